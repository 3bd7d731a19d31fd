// Package order tracks production orders: how many bags an order needs, how
// many the lines have accepted so far, and when the order will be filled at
// the configured bagging rate.
package order
