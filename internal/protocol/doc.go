// Package protocol parses the DiodeScout line protocol.
//
// The instrument streams ASCII lines terminated by '\n' ('\r' is ignored):
//
//	*            start a new series, discarding any unfinished one
//	* <text>     comment or metadata, ignored
//	<v> <i>      data point (volts, milliamperes), only while receiving
//	#            end the series; stored only if it has points
//
// Anything else is dropped silently. The parser never fails: every byte
// sequence yields only Nothing or SeriesCompleted results.
package protocol
