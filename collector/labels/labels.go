// Package labels holds the label sets of the labeled gauges. Fields are
// unexported, so outside this package a label set can only be built with its
// constructor, which takes a value for every label.
package labels

type Database struct {
	database string `label:"database"`
}

func NewDatabase(database string) Database {
	return Database{database}
}

type Connection struct {
	database string `label:"database"`
	state    string `label:"state"`
}

func NewConnection(database, state string) Connection {
	return Connection{database, state}
}

type DatabaseFile struct {
	database    string `label:"database"`
	logicalName string `label:"logicalname"`
	fileType    string `label:"type"`
	fileName    string `label:"filename"`
}

func NewDatabaseFile(database, logicalName, fileType, fileName string) DatabaseFile {
	return DatabaseFile{database, logicalName, fileType, fileName}
}

// DatabaseType is a per-database series split by stall type.
type DatabaseType struct {
	database string `label:"database"`
	stall    string `label:"type"`
}

func NewDatabaseType(database, stall string) DatabaseType {
	return DatabaseType{database, stall}
}

type DatabaseMode struct {
	database string `label:"database"`
	mode     string `label:"mode"`
}

func NewDatabaseMode(database, mode string) DatabaseMode {
	return DatabaseMode{database, mode}
}

type InstanceInfo struct {
	machineName    string `label:"machine_name"`
	serverName     string `label:"server_name"`
	instanceName   string `label:"instance_name"`
	edition        string `label:"edition"`
	productLevel   string `label:"product_level"`
	productVersion string `label:"product_version"`
	collation      string `label:"collation"`
	isClustered    string `label:"is_clustered"`
	isHadrEnabled  string `label:"is_hadr_enabled"`
}

func NewInstanceInfo(machineName, serverName, instanceName, edition, productLevel, productVersion,
	collation, isClustered, isHadrEnabled string) InstanceInfo {
	return InstanceInfo{machineName, serverName, instanceName, edition, productLevel, productVersion,
		collation, isClustered, isHadrEnabled}
}

type Volume struct {
	mountPoint string `label:"volume_mount_point"`
}

func NewVolume(mountPoint string) Volume {
	return Volume{mountPoint}
}

type Configuration struct {
	name string `label:"name"`
}

func NewConfiguration(name string) Configuration {
	return Configuration{name}
}

type WaitType struct {
	waitType string `label:"wait_type"`
}

func NewWaitType(waitType string) WaitType {
	return WaitType{waitType}
}
