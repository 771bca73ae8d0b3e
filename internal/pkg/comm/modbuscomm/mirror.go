/*
mirror.go Bridges simulation telemetry onto a Modbus register map so SCADA
tooling can watch a run in flight. Each telemetry step updates the Hz,
DemandMW and DispatchMW holding registers on the target device.
*/

package modbuscomm

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"log"
	"math"
	"os"
	"time"

	"github.com/goburrow/modbus"
	"github.com/google/uuid"
	"github.com/ohowland/fds_core/internal/pkg/grid"
	"github.com/ohowland/fds_core/internal/pkg/msg"
)

// Mirror writes simulation telemetry to a Modbus target.
type Mirror struct {
	pid       uuid.UUID
	handler   *modbus.TCPClientHandler
	registers []Register
}

// PID is an accessor for the mirror's process id.
func (m Mirror) PID() uuid.UUID {
	return m.pid
}

// MirrorConfig is the configuration format for the Modbus mirror
type MirrorConfig struct {
	IPAddr       string     `json:"IPAddr"`
	Port         string     `json:"Port"`
	SlaveID      byte       `json:"SlaveID"`
	Timeout      int        `json:"Timeout"`
	Registers    []Register `json:"Registers"`
	EnableLogger bool
}

// NewMirror is a factory for the Mirror struct
func NewMirror(jsonConfig []byte) (Mirror, error) {
	cfg := MirrorConfig{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Mirror{}, err
	}

	handler := modbus.NewTCPClientHandler(cfg.IPAddr + ":" + cfg.Port)
	handler.Timeout = time.Millisecond * time.Duration(cfg.Timeout)
	handler.SlaveId = cfg.SlaveID

	if cfg.EnableLogger {
		handler.Logger = log.New(os.Stdout, "modbus: ", log.LstdFlags)
	}

	pid, _ := uuid.NewUUID()

	return Mirror{
		pid:       pid,
		handler:   handler,
		registers: cfg.Registers,
	}, nil
}

// Process consumes grid telemetry until the channel closes.
// Write failures are logged and skipped; the mirror is an observer and
// must never stall the simulation.
func (m Mirror) Process(ch <-chan msg.Msg) {
	log.Println("[Modbus Mirror] Process Started")
	for message := range ch {
		step, ok := message.Payload().(grid.Step)
		if !ok {
			continue
		}
		values := map[string]float64{
			"Hz":         step.Hz,
			"DemandMW":   step.DemandMW,
			"DispatchMW": step.DispatchMW,
		}
		if err := m.Write(m.registers, values); err != nil {
			log.Printf("[Modbus Mirror] %v write error\n", err)
		}
	}
	log.Println("[Modbus Mirror] Process Stopped")
}

// Read returns the current value of each register parameter.
func (m Mirror) Read(registers []Register) (map[string]float64, error) {
	err := m.handler.Connect()
	if err != nil {
		return nil, err
	}
	defer m.handler.Close()

	client := modbus.NewClient(m.handler)
	readValues := make(map[string]float64)
	for _, register := range registers {
		resp, readErr := client.ReadHoldingRegisters(register.Address, sizeOf(register.DataType))
		if readErr != nil {
			err = readErr
			continue
		}
		readValues[register.Name] = decode(resp, register)
	}
	return readValues, err
}

// Write encodes and writes each named value to its register.
func (m Mirror) Write(registers []Register, writeValues map[string]float64) error {
	err := m.handler.Connect()
	if err != nil {
		return err
	}
	defer m.handler.Close()

	client := modbus.NewClient(m.handler)
	for name, val := range writeValues {
		i, findErr := findIndexByName(registers, name)
		if findErr != nil {
			err = findErr
			continue
		}
		valBytes := encode(val, registers[i])
		if _, writeErr := client.WriteMultipleRegisters(
			registers[i].Address, sizeOf(registers[i].DataType), valBytes); writeErr != nil {
			err = writeErr
		}
	}
	return err
}

// findIndexByName returns the index in the array of the register, if found.
func findIndexByName(registers []Register, name string) (int, error) {
	for index, register := range registers {
		if register.Name == name {
			return index, nil
		}
	}
	return -1, errors.New("register name not found in register array")
}

// encode converts a float64 into a byte array
func encode(val float64, register Register) []byte {
	var bytes []byte
	endian := getByteOrder(register.Endianness)
	switch register.DataType {
	case u16:
		bytes = make([]byte, 2*sizeOf(u16))
		endian.PutUint16(bytes, uint16(val))
	case i16:
		bytes = make([]byte, 2*sizeOf(i16))
		endian.PutUint16(bytes, uint16(int16(val)))
	case u32:
		bytes = make([]byte, 2*sizeOf(u32))
		endian.PutUint32(bytes, uint32(val))
	case i32:
		bytes = make([]byte, 2*sizeOf(i32))
		endian.PutUint32(bytes, uint32(int32(val)))
	case f32:
		bytes = make([]byte, 2*sizeOf(f32))
		endian.PutUint32(bytes, math.Float32bits(float32(val)))
	case u64:
		bytes = make([]byte, 2*sizeOf(u64))
		endian.PutUint64(bytes, uint64(val))
	case i64:
		bytes = make([]byte, 2*sizeOf(i64))
		endian.PutUint64(bytes, uint64(int64(val)))
	case f64:
		bytes = make([]byte, 2*sizeOf(f64))
		endian.PutUint64(bytes, math.Float64bits(val))
	}
	return bytes
}

// decode converts byte arrays into float64s
func decode(bytes []byte, register Register) float64 {
	var n float64
	endian := getByteOrder(register.Endianness)
	switch register.DataType {
	case u16:
		n = float64(endian.Uint16(bytes))
	case i16:
		n = float64(int16(endian.Uint16(bytes)))
	case u32:
		n = float64(endian.Uint32(bytes))
	case i32:
		n = float64(int32(endian.Uint32(bytes)))
	case f32:
		bits := endian.Uint32(bytes)
		n = float64(math.Float32frombits(bits))
	case u64:
		n = float64(endian.Uint64(bytes))
	case i64:
		n = float64(int64(endian.Uint64(bytes)))
	case f64:
		bits := endian.Uint64(bytes)
		n = math.Float64frombits(bits)
	}
	return n
}

// getByteOrder returns the correct binary.endian object for the register type
func getByteOrder(e Endian) binary.ByteOrder {
	switch e {
	case bigEndian:
		return binary.BigEndian
	case littleEndian:
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// sizeOf returns the number of u16 registers for the datatype
func sizeOf(t DataType) uint16 {
	switch t {
	case u16, i16:
		return 1
	case u32, i32, f32:
		return 2
	case u64, i64, f64:
		return 4
	}
	return 0
}
