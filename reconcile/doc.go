// Package reconcile makes sure every application of the catalog hosted in
// the upstream organization has a pull mirror on the forge.
//
// Catalog and existing mirrors are the only sources of truth and both are read
// fresh on every [Reconciler.Run]. Missing mirrors are created one after the
// other, each creation is followed by a settings update which turns off unused
// repository features. Mirrors are never updated or deleted once created.
package reconcile
