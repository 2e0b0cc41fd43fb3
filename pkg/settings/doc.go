// Package settings is a typed façade over a partitioned key-value engine.
//
// Values live in partitions identified by a PartitionID: the Standard
// partition (the zero value), the AuthScoped partition, or a Custom named
// partition. A Resolver maps each PartitionID to a stable engine namespace
// derived from the application's bundle id:
//
//	Standard      -> engine.DefaultNamespace
//	AuthScoped    -> "AuthRelated_<bundle-id>"
//	Custom(name)  -> "Custom_<name>_<bundle-id>"
//
// This mapping is part of the on-disk contract. Changing it orphans data
// written under the previous names.
//
// Reads tell three outcomes apart: a value of the requested type, a key that
// holds a value of another type (ErrTypeMismatch), and a key that holds
// nothing (ErrKeyNotFound). Primitive values are read with Read, values
// serialized through the Storage codec with ReadEncoded. Both kinds share one
// key space, so a key should hold one or the other.
package settings
