package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewSnowflakeID generates a snowflake ID string using the node ID from
// the SNOWFLAKE_NODE environment variable, defaulting to node 1 when the
// variable is missing or unparsable.
func NewSnowflakeID() string {
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = n
		}
	}
	return NewSnowflakeIDWithNode(nodeID)
}

// NewSnowflakeIDWithNode generates a snowflake ID string for the given
// node. If the node cannot be initialized it falls back to a KSUID so a
// unique ID is still returned.
func NewSnowflakeIDWithNode(nodeID int64) string {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return NewKSUID()
	}
	return node.Generate().String()
}
