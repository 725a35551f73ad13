// Package sqlite persists world-space clouds produced by the pipeline.
//
// A transform run records which recording, sensor and frame range were
// processed; each frame row stores the pose used and the world points as a
// compressed blob. The schema is owned by the embedded migrations.
package sqlite
