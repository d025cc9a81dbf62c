// Package service runs scans periodically.
//
// The Supervisor owns an event loop and a gocron scheduler. The scheduler
// only signals a start, the loop then runs the scan job in a goroutine. Only
// one run is active at a time: a start signal arriving while the previous
// run is still in progress is dropped and logged.
//
//	Scheduler            Supervisor                Job
//	    |                    |                       |
//	    | Start() ---------->|                       |
//	    |                    | go job(ctx) --------->| scan.Scanner.Do
//	    | Start() ---------->| busy: skip            |
//	    |                    |<------ error ---------|
//
// Do returns when ctx is canceled, after the running job returned.
package service
