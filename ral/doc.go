// Package ral implements a register abstraction layer: a software model of
// a memory-mapped register file.
//
// A Catalog describes every register, by name, primary address and alias
// addresses. An Engine resolves a register name or address against the
// catalog, keeps a shadow copy of each register value, and performs the
// transaction through a BusDriver.
//
// Writes set the shadow value before the transaction is issued and keep it
// if the transaction fails. Reads only update the shadow value on success.
package ral
