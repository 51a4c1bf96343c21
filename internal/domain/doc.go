// Package domain holds the value types shared by the notification pipeline:
// email preferences and their delivery counters, the finance records read
// from the expense tracker (users, categories, transactions), report
// aggregates, and the request/result shapes exchanged with the mail gateway.
//
// Nothing here talks to a database, a broker or HTTP. Methods are limited to
// defaults and small state transitions (DefaultPreferences, the
// DeliveryStatus counters) so that services, repositories and handlers
// agree on one set of rules without importing each other.
package domain
