package telemetry

// Group is one partition of a drained buffer: every record shares Key.
type Group struct {
	Key     PartitionKey
	Records []Record
}

// Partition splits a batch of records into per-key groups, preserving the
// order in which keys were first seen and the record order inside each group.
// Records whose key cannot be derived come back in the second return value.
func Partition(records []Record) ([]Group, []Record) {
	var groups []Group
	var malformed []Record
	index := make(map[PartitionKey]int)

	for _, rec := range records {
		key, err := KeyOf(rec)
		if err != nil {
			malformed = append(malformed, rec)
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}

	return groups, malformed
}

// EncodeLines serializes records as newline-delimited JSON, one object per
// line, newline-terminated.
func EncodeLines(records []Record) ([]byte, error) {
	var out []byte
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out, nil
}

// Packetize slices a group into consecutive chunks sized so that each
// chunk's serialized form stays near or under maxBytes. The chunk length is
// estimated from the first record's serialized size; a record bigger than
// maxBytes still yields a single-record chunk rather than an empty one.
func Packetize(records []Record, maxBytes int) ([][]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	first, err := json.Marshal(records[0])
	if err != nil {
		return nil, err
	}

	size := maxBytes / len(first)
	if size < 1 {
		size = 1
	}

	var packets [][]Record
	for i := 0; i < len(records); i += size {
		end := i + size
		if end > len(records) {
			end = len(records)
		}
		packets = append(packets, records[i:end])
	}
	return packets, nil
}
