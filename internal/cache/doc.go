// Package cache provides the sharded LRU cache backing chunk trees and
// column heightmaps during streaming. Keys carry the configuration
// generation, so entries from a superseded configuration simply age out.
package cache
