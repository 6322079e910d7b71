package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// DefaultName is used when the machine id is unavailable.
const DefaultName = "fes"

// MachineID retrieves the id identifying the machine, keyed for this
// application so the raw id is not exposed.
func MachineID() (string, error) {
	return machineid.ProtectedID("fes")
}

// NameFromMachineID derives a short stimulator name from the machine id.
func NameFromMachineID() string {
	id, err := MachineID()
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return DefaultName
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return DefaultName + "-" + id
}
