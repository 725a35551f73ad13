// Package pipeline turns recorded frames into world-space clouds.
//
// It is the composition root between the dataset reader and the lidar
// transform: it resolves a sensor's actor, reads and corrects its pose,
// and transforms the sensor's cloud. Neither dataset nor lidar import
// pipeline.
package pipeline
