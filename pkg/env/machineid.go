package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// machineIDLen keeps device ids short enough for topic names.
const machineIDLen = 12

// MachineID retrieves the unique ID identifying the machine, or an empty
// string if it's unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID("r503")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return ""
	}
	if len(id) > machineIDLen {
		id = id[:machineIDLen]
	}
	return id
}
