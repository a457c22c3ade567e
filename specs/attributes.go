package specs

// AttributesSpec holds the raw facts the scheduler reports about a finished job.
//
// Keys and values are exactly what `scontrol show job <id> --details` prints,
// for example "UserId", "GroupId", "StartTime", "EndTime", "NumNodes" or
// "Partition". Nothing is typed at this boundary: the rule configuration
// decides which attributes are read, and parsing happens during derivation.
//
// Examples:
//   - {"UserId": "alice(1000)", "GroupId": "grp1(1000)", "NumNodes": "2"}
//   - {"Partition": "gpu-a100", "NumCPUs": "64", "StartTime": "2022-01-01T00:00:00"}
type AttributesSpec map[string]string
