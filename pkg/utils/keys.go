package utils

import "fmt"

func PriceKey(chainId uint64, tokenAddress string) string {
	return fmt.Sprintf("balance:price:%d:%s", chainId, NormalizeAddress(tokenAddress))
}
