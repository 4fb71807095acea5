package cache

// ScopedKeyer prefixes every key of an inner Keyer, so several tenants (or
// several server deployments sharing one Redis) use separate namespaces.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer returns a keyer that prepends prefix. A nil inner keyer
// means DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) LayerKey(sourceHash string, opts LayerKeyOpts) string {
	return k.prefix + k.inner.LayerKey(sourceHash, opts)
}

func (k *ScopedKeyer) ArtifactKey(inputsHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(inputsHash, opts)
}
