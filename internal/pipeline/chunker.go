package pipeline

// Partition splits items into consecutive chunks of at most size items.
// The same input always yields the same chunks.
func Partition(items []WorkItem, size int) ([]Chunk, error) {
	if size < 1 {
		return nil, ConfigErrorf("chunk size must be >= 1, got %d", size)
	}
	n := len(items) / size
	if len(items)%size != 0 {
		n++
	}
	chunks := make([]Chunk, 0, n)
	for start := 0; start < len(items); {
		end := start + min(size, len(items)-start)
		batch := make([]WorkItem, end-start)
		copy(batch, items[start:end])
		chunks = append(chunks, Chunk{Index: len(chunks), Items: batch})
		start = end
	}
	return chunks, nil
}
