/*
Package events distributes pipeline observations to subscribers.

Statistics and validation findings travel as events, never as errors. The
broker fans each published event out to every subscriber over buffered
channels; a subscriber that falls behind misses events rather than
blocking the pipeline. LogSink is the built-in subscriber: it drains the
stream into the structured log, which is how the daemon surfaces the
per-change statistics and conflation findings.
*/
package events
