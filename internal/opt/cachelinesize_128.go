//go:build rtsync_cachelinesize_128 && !rtsync_cachelinesize_64

package opt

// CacheLineSize_ forced to 128 bytes via the rtsync_cachelinesize_128 tag.
const CacheLineSize_ = 128
