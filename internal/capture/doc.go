// Package capture records one display into a video file.
//
// A Session owns a screen grabber and a video sink. Start opens both and runs
// the acquisition loop on its own goroutine: grab a frame, convert it to the
// layout the sink wants, write it. Stop raises a flag that the loop checks
// once per iteration, before grabbing, so the frame in flight is always
// written completely. When the loop ends, either on Stop or on the first
// error, the grabber and the sink are closed, the Result is published, the
// OnFinish callback runs and Done is closed, in that order.
//
// Frames are written back to back as fast as they are grabbed and the file
// declares a nominal frame rate, so playback speed follows the declared rate
// and not the wall clock. Config.Pace caps the grab rate at the frame rate,
// which brings playback close to real time when capture is faster than that.
// Full HD frames can take longer than a frame interval to convert and encode,
// in which case the recording plays back faster than it happened.
package capture
