package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// DefaultConfPath is read when neither the CONFIG env var nor a flag names a file
const DefaultConfPath = "redis.conf"

// ServerProperties defines global config properties
type ServerProperties struct {
	Bind       string `cfg:"bind" toml:"bind"`
	Port       int    `cfg:"port" toml:"port"`
	MaxClients int    `cfg:"maxclients" toml:"maxclients"`

	// TxnAPI switches the transactional storage commands on, when off they reply "not supported yet"
	TxnAPI        bool   `cfg:"txn-api" toml:"txn-api"`
	StorageEngine string `cfg:"storage-engine" toml:"storage-engine"`
	DataDir       string `cfg:"data-dir" toml:"data-dir"`
	TxnRetry      int    `cfg:"txn-retry" toml:"txn-retry"`
	ServerEngine  string `cfg:"server-engine" toml:"server-engine"`
	// GCInterval is in seconds, 0 disables the sweeper
	GCInterval  int    `cfg:"gc-interval" toml:"gc-interval"`
	GCWorkers   int    `cfg:"gc-workers" toml:"gc-workers"`
	AdminAddr   string `cfg:"admin-addr" toml:"admin-addr"`
	LogDir      string `cfg:"log-dir" toml:"log-dir"`
	LogLevel    string `cfg:"log-level" toml:"log-level"`
	RDBFilename string `cfg:"rdb-filename" toml:"rdb-filename"`

	// CfPath is the absolute path of the loaded file, empty when defaults are used
	CfPath string `cfg:"-" toml:"-"`
}

// Properties holds global config properties
var Properties = Default()

// Default returns the properties used when no config file exists
func Default() *ServerProperties {
	return &ServerProperties{
		Bind:          "0.0.0.0",
		Port:          6399,
		MaxClients:    1000,
		TxnAPI:        true,
		StorageEngine: "memory",
		DataDir:       "data",
		TxnRetry:      10,
		ServerEngine:  "tcp",
		GCInterval:    60,
		GCWorkers:     4,
		LogLevel:      "info",
	}
}

// Addr returns the address the redis server listens on
func (p *ServerProperties) Addr() string {
	return p.Bind + ":" + strconv.Itoa(p.Port)
}

func parse(src io.Reader) (*ServerProperties, error) {
	config := Default()

	// read config file
	rawMap := make(map[string]string)
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) > 0 && line[0] == '#' {
			continue
		}
		pivot := strings.IndexAny(line, " ")
		if pivot > 0 && pivot < len(line)-1 { // separator found
			key := line[0:pivot]
			value := strings.Trim(line[pivot+1:], " ")
			rawMap[strings.ToLower(key)] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	// parse format
	t := reflect.TypeOf(config)
	v := reflect.ValueOf(config)
	n := t.Elem().NumField()
	for i := 0; i < n; i++ {
		field := t.Elem().Field(i)
		fieldVal := v.Elem().Field(i)
		key, ok := field.Tag.Lookup("cfg")
		if !ok {
			key = field.Name
		}
		if key == "-" {
			continue
		}
		value, ok := rawMap[strings.ToLower(key)]
		if !ok {
			continue
		}
		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(value)
		case reflect.Int:
			intValue, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, errors.Errorf("config %s: %q is not an integer", key, value)
			}
			fieldVal.SetInt(intValue)
		case reflect.Bool:
			fieldVal.SetBool(toBool(value))
		}
	}
	return config, nil
}

func parseTOML(src io.Reader) (*ServerProperties, error) {
	config := Default()
	if _, err := toml.NewDecoder(src).Decode(config); err != nil {
		return nil, errors.Wrap(err, "decode toml config")
	}
	return config, nil
}

// Load reads properties from a redis.conf style file, or from toml when the name ends with .toml
func Load(filename string) (*ServerProperties, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer file.Close()
	var props *ServerProperties
	if strings.EqualFold(filepath.Ext(filename), ".toml") {
		props, err = parseTOML(file)
	} else {
		props, err = parse(file)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s", filename)
	}
	if abs, err := filepath.Abs(filename); err == nil {
		props.CfPath = abs
	}
	return props, nil
}

// Setup loads configFilename into Properties. An empty name falls back to the CONFIG env var,
// then to DefaultConfPath, then to the defaults.
func Setup(configFilename string) error {
	if configFilename == "" {
		configFilename = os.Getenv("CONFIG")
	}
	if configFilename == "" {
		if !fileExists(DefaultConfPath) {
			Properties = Default()
			return nil
		}
		configFilename = DefaultConfPath
	}
	props, err := Load(configFilename)
	if err != nil {
		return err
	}
	Properties = props
	return nil
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

func toBool(s string) bool {
	ls := strings.ToLower(s)
	switch ls {
	case "true", "yes", "t", "y":
		return true
	default:
		return false
	}
}
