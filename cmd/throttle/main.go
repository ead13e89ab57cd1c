// Throttle is an in-process admission control service. It hosts named rate
// limiters (token bucket, sliding window, fixed window) and exposes them over
// HTTP, either as an API or as an admission middleware in front of a proxy.
//
// Usage:
//
//	# Start the server with the default configuration file
//	throttle run
//
//	# Start with a custom configuration file
//	throttle run --config /etc/throttle/throttle.yaml
//
//	# Check a configuration file and list its limiters
//	throttle validate
//
//	# Replay a request pattern against a limiter on a virtual clock
//	throttle simulate --strategy sliding_window --rate 10 --per second --requests 30
//
//	# Inspect the audit journal
//	throttle audit query --limiter api --kind denied
package main

func main() {
	Execute()
}
