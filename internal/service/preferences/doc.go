// Package preferences implements the per-user notification preference store.
//
// It owns the defaults applied to new users, the group-by-group merge used
// by settings updates, the unsubscribe-token identity, the send/no-send
// decisions for transaction and budget mail, and the delivery-outcome
// bookkeeping that blacklists a user after repeated transport failures.
//
// The service layer depends on the Repository interface defined in
// repository.go. It never imports net/http or database/sql directly.
package preferences
