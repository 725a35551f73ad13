package sqlite

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/banshee-data/simlidar/internal/lidar"
	"github.com/banshee-data/simlidar/internal/timeutil"
)

// ErrNotFound is returned when a run or frame does not exist.
var ErrNotFound = errors.New("not found")

// TransformRun describes one pass of the pipeline over a frame range.
type TransformRun struct {
	RunID       string  `json:"run_id"`
	DatasetPath string  `json:"dataset_path"`
	Sensor      string  `json:"sensor"`
	YawFixDeg   float64 `json:"yaw_fix_deg"`
	FrameFrom   int     `json:"frame_from"`
	FrameTo     int     `json:"frame_to"`
	CreatedAt   int64   `json:"created_at"`
}

// FrameCloud is a persisted world-space cloud with the pose that produced it.
type FrameCloud struct {
	RunID   string
	Frame   int
	ActorID int64
	Pose    lidar.Pose
	Points  []r3.Vector
}

// CloudStore provides persistence for transform runs and their frames.
type CloudStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewCloudStore creates a new CloudStore stamping runs with the wall clock.
func NewCloudStore(db *sql.DB) *CloudStore {
	return NewCloudStoreWithClock(db, timeutil.RealClock{})
}

// NewCloudStoreWithClock creates a CloudStore that reads CreatedAt from clock.
func NewCloudStoreWithClock(db *sql.DB, clock timeutil.Clock) *CloudStore {
	return &CloudStore{db: db, clock: clock}
}

// InsertRun persists a new run. If RunID is empty, a UUID is generated.
func (s *CloudStore) InsertRun(run *TransformRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO transform_runs (
				run_id, dataset_path, sensor, yaw_fix_deg, frame_from, frame_to, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.DatasetPath, run.Sensor, run.YawFixDeg,
			run.FrameFrom, run.FrameTo, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

// GetRun returns a run by ID.
func (s *CloudStore) GetRun(runID string) (*TransformRun, error) {
	var run TransformRun
	err := s.db.QueryRow(`
		SELECT run_id, dataset_path, sensor, yaw_fix_deg, frame_from, frame_to, created_at
		FROM transform_runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &run.DatasetPath, &run.Sensor, &run.YawFixDeg,
		&run.FrameFrom, &run.FrameTo, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns all runs, newest first.
func (s *CloudStore) ListRuns() ([]*TransformRun, error) {
	rows, err := s.db.Query(`
		SELECT run_id, dataset_path, sensor, yaw_fix_deg, frame_from, frame_to, created_at
		FROM transform_runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*TransformRun
	for rows.Next() {
		var run TransformRun
		if err := rows.Scan(&run.RunID, &run.DatasetPath, &run.Sensor, &run.YawFixDeg,
			&run.FrameFrom, &run.FrameTo, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, through the foreign key, its frames.
func (s *CloudStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM transform_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete run rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}

// InsertFrame persists one frame's world cloud. Re-inserting a frame for
// the same run replaces it. NaN pose components are stored as NULL and read
// back as NaN.
func (s *CloudStore) InsertFrame(fc *FrameCloud) error {
	blob, err := EncodePoints(fc.Points)
	if err != nil {
		return err
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO frame_clouds (
				run_id, frame, actor_id,
				pitch_deg, yaw_deg, roll_deg,
				location_x, location_y, location_z,
				point_count, points_blob
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fc.RunID, fc.Frame, fc.ActorID,
			nullFloat64(fc.Pose.Rotation.Pitch), nullFloat64(fc.Pose.Rotation.Yaw), nullFloat64(fc.Pose.Rotation.Roll),
			nullFloat64(fc.Pose.Location.X), nullFloat64(fc.Pose.Location.Y), nullFloat64(fc.Pose.Location.Z),
			len(fc.Points), blob,
		)
		if err != nil {
			return fmt.Errorf("insert frame %d: %w", fc.Frame, err)
		}
		return nil
	})
}

// GetFrame loads one persisted frame.
func (s *CloudStore) GetFrame(runID string, frame int) (*FrameCloud, error) {
	fc := FrameCloud{RunID: runID, Frame: frame}
	var (
		count int
		blob  []byte
		pose  [6]sql.NullFloat64
	)
	err := s.db.QueryRow(`
		SELECT actor_id, pitch_deg, yaw_deg, roll_deg,
		       location_x, location_y, location_z, point_count, points_blob
		FROM frame_clouds WHERE run_id = ? AND frame = ?`, runID, frame,
	).Scan(&fc.ActorID,
		&pose[0], &pose[1], &pose[2],
		&pose[3], &pose[4], &pose[5],
		&count, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s frame %d: %w", runID, frame, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get frame: %w", err)
	}
	fc.Pose = lidar.Pose{
		Rotation: lidar.Rotation{Pitch: floatOrNaN(pose[0]), Yaw: floatOrNaN(pose[1]), Roll: floatOrNaN(pose[2])},
		Location: r3.Vector{X: floatOrNaN(pose[3]), Y: floatOrNaN(pose[4]), Z: floatOrNaN(pose[5])},
	}

	points, err := DecodePoints(blob)
	if err != nil {
		return nil, fmt.Errorf("run %s frame %d: %w", runID, frame, err)
	}
	if len(points) != count {
		return nil, fmt.Errorf("run %s frame %d: blob holds %d points, row says %d", runID, frame, len(points), count)
	}
	fc.Points = points
	return &fc, nil
}

// CountFrames returns how many frames a run has persisted.
func (s *CloudStore) CountFrames(runID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM frame_clouds WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

// nullFloat64 stores NaN as NULL; the SQLite driver cannot bind NaN.
func nullFloat64(f float64) interface{} {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// EncodePoints packs points as gzip-compressed little-endian float64 xyz
// triples.
func EncodePoints(points []r3.Vector) ([]byte, error) {
	raw := make([]byte, 0, len(points)*24)
	for _, p := range points {
		raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(p.X))
		raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(p.Y))
		raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(p.Z))
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress points: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress points: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePoints reverses EncodePoints.
func DecodePoints(blob []byte) ([]r3.Vector, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decompress points: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress points: %w", err)
	}
	if len(raw)%24 != 0 {
		return nil, fmt.Errorf("points blob length %d is not a multiple of 24", len(raw))
	}

	points := make([]r3.Vector, len(raw)/24)
	for i := range points {
		off := i * 24
		points[i] = r3.Vector{
			X: math.Float64frombits(binary.LittleEndian.Uint64(raw[off:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(raw[off+8:])),
			Z: math.Float64frombits(binary.LittleEndian.Uint64(raw[off+16:])),
		}
	}
	return points, nil
}
