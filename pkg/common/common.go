package common

import (
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	idNode     *snowflake.Node
	idNodeOnce sync.Once
)

func node() *snowflake.Node {
	idNodeOnce.Do(func() {
		n, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		idNode = n
	})
	return idNode
}

// SetNodeID selects the snowflake node used for id generation. It must be
// called before the first id is generated to take effect.
func SetNodeID(id int64) error {
	n, err := snowflake.NewNode(id)
	if err != nil {
		return err
	}
	idNodeOnce.Do(func() { idNode = n })
	return nil
}

// PrefixedID returns a unique id such as "cart_1781234567890123".
func PrefixedID(prefix string) string {
	return prefix + "_" + node().Generate().String()
}

// IfEmptyStr returns defval when src is blank.
func IfEmptyStr(src string, defval string) string {
	if strings.TrimSpace(src) == "" {
		return defval
	}
	return src
}
