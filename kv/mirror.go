package kv

// Mirrored pairs a primary Store with a secondary one, modeling a local
// store next to a cloud-synced copy. Writes and removals go to both; reads
// fall back to the secondary on a primary miss, so state written on another
// device is picked up.
type Mirrored struct {
	Primary   Store
	Secondary Store
}

func (m Mirrored) GetString(key string) (string, bool) {
	if v, ok := m.Primary.GetString(key); ok {
		return v, true
	}
	return m.Secondary.GetString(key)
}

func (m Mirrored) SetString(key, value string) {
	m.Primary.SetString(key, value)
	m.Secondary.SetString(key, value)
}

func (m Mirrored) GetBool(key string) bool {
	return m.Primary.GetBool(key) || m.Secondary.GetBool(key)
}

func (m Mirrored) SetBool(key string, value bool) {
	m.Primary.SetBool(key, value)
	m.Secondary.SetBool(key, value)
}

func (m Mirrored) Remove(key string) {
	m.Primary.Remove(key)
	m.Secondary.Remove(key)
}
