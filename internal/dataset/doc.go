// Package dataset reads recorded multi-robot simulation files.
//
// A recording is a hierarchical container (HDF5 on disk) holding a JSON
// metadata blob, per-frame actor state under state/, and per-frame lidar
// clouds under sensors/. Dataset wraps a Container with shape checks and
// the lookups needed to build world-space clouds: actor resolution by
// identifier, per-frame poses and sensor-local points.
//
// Nothing here applies dataset corrections to poses; see
// lidar.CorrectRecordedYaw.
package dataset
