// Package rate implements the Redis fixed-window counters behind login and refresh
// throttling.
//
// Each counter is an INCR with an EXPIRE set on the first hit of the window. Keys:
//   - rl:login:id:<hash>  failed logins per identifier (hashed)
//   - rl:login:ip:<ip>    failed logins per client IP
//   - rl:refresh:<user>   refreshes per user
package rate
