package shortener

// Key layout in the coordination store. The url: namespace is the resolvable
// cache; reserved: entries exist only between candidate generation and
// commit; clicks: holds the pending access-count delta.
func CacheKey(code string) string       { return "url:" + code }
func ReservationKey(code string) string { return "reserved:" + code }
func ClicksKey(code string) string      { return "clicks:" + code }
