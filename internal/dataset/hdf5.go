package dataset

import (
	"fmt"
	"sort"

	"github.com/scigolib/hdf5"

	"github.com/banshee-data/simlidar/internal/monitoring"
)

// HDF5Container adapts an HDF5 file to Container. The object tree is walked
// once on open; dataset contents are read on demand.
type HDF5Container struct {
	file     *hdf5.File
	groups   map[string][]string
	datasets map[string]*hdf5.Dataset
}

// OpenHDF5 opens the HDF5 file at path read-only and indexes its groups and
// datasets by slash path.
func OpenHDF5(path string) (*HDF5Container, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hdf5 file %s: %w", path, err)
	}

	c := &HDF5Container{
		file:     f,
		groups:   make(map[string][]string),
		datasets: make(map[string]*hdf5.Dataset),
	}

	f.Walk(func(p string, obj hdf5.Object) {
		key := cleanPath(p)
		switch v := obj.(type) {
		case *hdf5.Group:
			children := v.Children()
			names := make([]string, 0, len(children))
			for _, child := range children {
				names = append(names, child.Name())
			}
			sort.Strings(names)
			c.groups[key] = names
		case *hdf5.Dataset:
			c.datasets[key] = v
		}
	})

	monitoring.Logf("opened %s: %d groups, %d datasets", path, len(c.groups), len(c.datasets))
	return c, nil
}

// Keys implements Container.
func (c *HDF5Container) Keys(group string) ([]string, error) {
	names, ok := c.groups[cleanPath(group)]
	if !ok {
		return nil, fmt.Errorf("%w: group %q", ErrPathNotFound, group)
	}
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

// Float64s implements Container. Integer datasets such as state/id are
// widened to float64 by the reader.
func (c *HDF5Container) Float64s(path string) ([]float64, error) {
	ds, ok := c.datasets[cleanPath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: array %q", ErrPathNotFound, path)
	}
	data, err := ds.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// String implements Container for scalar or single-element string datasets.
// Fixed-length strings go through the hdf5 reader. Variable-length strings,
// which h5py writes for Python str values, are decoded from the global heap
// by readVarString.
func (c *HDF5Container) String(path string) (string, error) {
	ds, ok := c.datasets[cleanPath(path)]
	if !ok {
		return "", fmt.Errorf("%w: string %q", ErrPathNotFound, path)
	}

	values, fixedErr := ds.ReadStrings()
	if fixedErr == nil {
		if len(values) == 0 {
			return "", fmt.Errorf("%w: %s is empty", ErrShapeMismatch, path)
		}
		return values[0], nil
	}

	s, err := readVarString(c.file.Reader(), c.sizes(), ds.Address())
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w (fixed-length reader: %v)", path, err, fixedErr)
	}
	return s, nil
}

func (c *HDF5Container) sizes() h5Sizes {
	sb := c.file.Superblock()
	return h5Sizes{offset: int(sb.OffsetSize), length: int(sb.LengthSize), order: sb.Endianness}
}

// Close implements Container.
func (c *HDF5Container) Close() error {
	return c.file.Close()
}
