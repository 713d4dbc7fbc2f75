// Package scrape collects inverter telemetry from the SolarEdge monitoring
// portal for a single site.
//
// # Architecture
//
// The scraper is structured into several packages:
//   - config: YAML config file and runtime settings (flags, env, defaults)
//   - session: cookie jar persisted between runs
//   - api: site document fetcher with one reseeded retry, and its parser
//   - cache: on-disk copy of the last fetched document
//   - poller: freshness policy on top of the cache
//   - publisher: atomic latest.json snapshot writer
//   - database: (time, location_id) keyed inserts into PostgreSQL or SQLite
//   - scheduler: fixed interval publish loop
//   - metrics: Prometheus counters and gauges
//   - app: the print, insert and publish operations wired by cmd
//
// Key Features
//
//   - Session handling:
//     The portal has no public API for this data. Requests carry browser
//     cookies from the config; when they stop working the jar is reset to
//     the configured set and the request is retried once.
//
//   - Freshness:
//     The portal updates roughly every 15 minutes. A cached document is
//     reused while it reports zero output and is younger than the idle
//     threshold; otherwise a live copy is fetched.
//
//   - Storage:
//     Day energy is stored in kWh. Inserting the same (time, location_id)
//     twice is not an error.
//
// Example Usage
//
//	solaredge-scrape                    # print the current reading
//	solaredge-scrape insert             # store it if fresh
//	solaredge-scrape --publish          # write latest.json every 400s
//
// For more information about specific packages, see their respective
// documentation.
package scrape
