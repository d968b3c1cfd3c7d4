package brackets

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// NumRounds returns log2(size) for a power-of-two bracket size.
func NumRounds(size int) int {
	rounds := 0
	for size > 1 {
		size >>= 1
		rounds++
	}
	return rounds
}

// SeedOrder returns the canonical draw order of seeds for a bracket of the
// given power-of-two size. It starts from [1 2] and repeatedly replaces every
// seed v of a k-long list with the pair (v, 2k+1-v).
func SeedOrder(size int) []int {
	if size < 2 {
		return []int{1}
	}
	order := []int{1, 2}
	for len(order) < size {
		k := len(order)
		next := make([]int, 0, 2*k)
		for _, v := range order {
			next = append(next, v, 2*k+1-v)
		}
		order = next
	}
	return order
}

// SeedPairs groups SeedOrder into first-round pairs, e.g. size 8 gives
// (1,8) (4,5) (2,7) (3,6).
func SeedPairs(size int) [][2]int {
	order := SeedOrder(size)
	pairs := make([][2]int, 0, len(order)/2)
	for i := 0; i+1 < len(order); i += 2 {
		pairs = append(pairs, [2]int{order[i], order[i+1]})
	}
	return pairs
}
