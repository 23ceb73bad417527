package database

import "errors"

// ErrCacheClosed is returned when the cache backend has been shut down
var ErrCacheClosed = errors.New("route cache is closed")
