package utils

func ArrayContains[T comparable](arr []T, value T) bool {
	for _, a := range arr {
		if a == value {
			return true
		}
	}
	return false
}

// ArrayMap returns new array with mapper function applied to each element
func ArrayMap[V any, R any](arr []V, mapper func(V) R) []R {
	result := make([]R, len(arr))
	for i, v := range arr {
		result[i] = mapper(v)
	}
	return result
}

// ArrayFilter returns new array with elements that satisfy predicate
func ArrayFilter[V any](arr []V, predicate func(V) bool) []V {
	result := make([]V, 0, len(arr))
	for _, v := range arr {
		if predicate(v) {
			result = append(result, v)
		}
	}
	return result
}

// Chunks splits arr into consecutive slices of at most size elements
func Chunks[T any](arr []T, size int) [][]T {
	if len(arr) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(arr)
	}
	res := make([][]T, 0, (len(arr)+size-1)/size)
	for start := 0; start < len(arr); start += size {
		end := min(start+size, len(arr))
		res = append(res, arr[start:end])
	}
	return res
}
