// Package pursuitbot drives a differential-drive robot that chases a target
// and searches for it again when it is lost.
//
// Two targets are supported. In line mode a color sensor under the robot
// reports whether a dark line is beneath it; the robot drives straight while
// it is, and sweeps right then left on a timer while it is not. In follow
// mode a remote camera publishes distance and position errors over MQTT or
// UDP, and two PI loops turn them into wheel speeds.
//
// # Installation
//
//	go install github.com/gwillem/pursuitbot/cmd/pursuitbot@latest
//
// # Usage
//
// Pick the motor bridge port, check the wheel directions and calibrate the
// line sensor:
//
//	pursuitbot setup
//
// Then drive:
//
//	pursuitbot line --tui
//	pursuitbot follow --broker tcp://broker.local:1883 --record runs.db
//
// Recorded runs can be summarised and charted:
//
//	pursuitbot report --db runs.db --html run.html
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/pursuitbot: CLI with setup, line, follow, report and stop commands
//   - pkg/pursuit: PI controller, search state machine and error sources
//   - pkg/pilot: the control loop with its fail-safe stop
//   - pkg/robot: wheel mapping, calibration, configuration and the serial bridge
//   - pkg/telemetry: MQTT and UDP transports for remote tracking errors
//   - pkg/recorder: SQLite session recording and reports
package pursuitbot
