// Package integration contains the ports the sync pipeline uses to reach
// systems it does not own: the storefront orders API, the pricing service
// that publishes discount rules, and the ERP order-entry database.
//
// Ports (interfaces) and the value types crossing them are defined here;
// adapters live under internal/infrastructure.
package integration
