package cache

// ScopedKeyer prefixes every key of an inner Keyer. The HTTP service uses
// it so that several deployments can share one Redis database.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "pageshot:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means
// [DefaultKeyer]; an empty prefix returns inner unchanged.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	if prefix == "" {
		return inner
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ExportKey generates a prefixed export key.
func (k *ScopedKeyer) ExportKey(imageHash string, opts ExportKeyOpts) string {
	return k.prefix + k.inner.ExportKey(imageHash, opts)
}

// PreviewKey generates a prefixed preview key.
func (k *ScopedKeyer) PreviewKey(imageHash string, maxWidth, maxHeight int) string {
	return k.prefix + k.inner.PreviewKey(imageHash, maxWidth, maxHeight)
}
