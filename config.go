package ejs

import "fmt"

// Config is the engine's typed settings map: a dotted-path string
// key to a single typed value, with get/set panicking on a type
// mismatch rather than silently coercing.
type Config map[string]*cfgVal

// NewConfig returns a Config primed with every default the engine
// constructor and CLI need.
func NewConfig() *Config {
	m := make(Config)
	m.SetInt("vm.pool_size", 16384)
	m.SetInt("vm.max_call_depth", 512)
	m.SetInt("vm.max_lock_overflow", maxLock)
	m.SetInt("vm.stack_headroom", gcStackHeadroomCells)
	m.SetBool("json.compatible", true)
	m.SetBool("vm.strict_mode", false)
	m.SetString("vm.source_name", "<input>")
	return &m
}

type cfgValType int

const (
	cfgValUndefined cfgValType = iota
	cfgValBool
	cfgValInt
	cfgValString
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValUndefined: "undefined",
		cfgValBool:      "bool",
		cfgValInt:       "int",
		cfgValString:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValUndefined {
		panic(fmt.Sprintf("can't assign %q to config value of type %q", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("can't retrieve %q from config value of type %q", vt, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValBool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValInt)
	(*c)[path].asInt = v
}

func (c *Config) SetString(path string, v string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValString)
	(*c)[path].asString = v
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValBool)
		return val.asBool
	}
	panic(fmt.Sprintf("bool setting %q does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValInt)
		return val.asInt
	}
	panic(fmt.Sprintf("int setting %q does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValString)
		return val.asString
	}
	panic(fmt.Sprintf("string setting %q does not exist", path))
}
