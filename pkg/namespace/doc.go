/*
Package namespace manages collections of collections.

A namespace is itself a collection whose documents are collection
descriptors, so namespaces nest and version like any other data. Child
collections are instantiated lazily on first access — never from the
descriptor read path — which is what breaks the cycle when a namespace's
own descriptor lives inside it.

Descriptor documents are validated against the collection metadata
schema (uuid, permissions, and the three backend descriptors are
required; unknown attributes are refused), and only permissions and
schema may change after create.
*/
package namespace
