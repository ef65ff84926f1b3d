// Package ordersync implements the order reconciliation and incremental-sync
// pipeline.
//
// The inbound pass resolves the cursor, fetches new storefront orders and the
// discount-rule table, transforms them into order records and upserts them.
// The outbound pass reads ERP rows, reconciles them into the store, pushes
// fulfillment and tag updates to the storefront and migrates terminal orders
// from the open partition to the closed one. Each stage of a pass completes
// before the next starts; a failed stage aborts the pass.
package ordersync
