package lidar

// RecordedYawOffsetDeg compensates a property of the recorded simulation
// datasets: yaw for lidar-bearing actors is stored 90° short of the value the
// world transform needs.
const RecordedYawOffsetDeg = 90.0

// CorrectRecordedYaw returns rot with RecordedYawOffsetDeg added to Yaw.
//
// This belongs to the caller reading recorded poses. TransformToWorld never
// applies it, so it must be called exactly once per pose read from a dataset.
func CorrectRecordedYaw(rot Rotation) Rotation {
	rot.Yaw += RecordedYawOffsetDeg
	return rot
}
