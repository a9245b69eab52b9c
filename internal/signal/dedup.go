package signal

import (
	"hash/fnv"
	"strconv"

	lru "github.com/hashicorp/golang-lru"
)

// Deduper 进程内的信号重放拦截
// 容量固定的并发安全 LRU，满了淘汰最旧的记录，不做时间窗
type Deduper struct {
	seen *lru.Cache
}

func NewDeduper(size int) *Deduper {
	if size <= 0 {
		size = 512
	}
	c, _ := lru.New(size)
	return &Deduper{seen: c}
}

// Seen 原子地"查并记"：重复返回 true，首次出现记下并返回 false
func (d *Deduper) Seen(sig *Signal) bool {
	ok, _ := d.seen.ContainsOrAdd(identity(sig), struct{}{})
	return ok
}

// identity 严格模板用显式信号id，否则对整条消息取指纹
func identity(sig *Signal) string {
	if sig.ID != "" {
		return string(sig.Action) + ":" + sig.ID
	}
	h := fnv.New64a()
	h.Write([]byte(sig.Raw))
	return strconv.FormatUint(h.Sum64(), 16)
}
