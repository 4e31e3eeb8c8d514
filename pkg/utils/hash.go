package utils

import (
	"hash/crc32"
)

func GetHashBucket(key string, bucketSize uint32) uint32 {
	if bucketSize == 0 {
		return 0
	}
	// 同一个 session 的事件落在同一个 worker，保证顺序
	return crc32.ChecksumIEEE([]byte(key)) % bucketSize
}
