// Package timesync converts the agent's millisecond timestamps to wall-clock
// time.
//
// The agent stamps every notification with the target's clock in milliseconds
// since the Unix epoch. Those values are only correlation keys for the event
// buffer; this package turns them into time.Time values in a configured
// location for display and span timing.
package timesync
