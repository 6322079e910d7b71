package telemetry

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/fes.go/pkg/fes"
)

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func stringValue(v string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: v}}
}

func boolValue(v bool) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: v}}
}

func structValue(fields map[string]*structpb.Value) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{Fields: fields}}}
}

// StatusStruct converts a status into a protobuf Struct.
func StatusStruct(st fes.Status) *structpb.Struct {
	events := make([]*structpb.Value, len(st.Events))
	for i, ev := range st.Events {
		events[i] = structValue(map[string]*structpb.Value{
			"channel": stringValue(ev.Channel),
			"amp":     numberValue(float64(ev.Amplitude)),
			"pw":      numberValue(float64(ev.PulseWidth)),
			"max_amp": numberValue(float64(ev.MaxAmplitude)),
			"max_pw":  numberValue(float64(ev.MaxPulseWidth)),
		})
	}
	fields := map[string]*structpb.Value{
		"name":        stringValue(st.Name),
		"enabled":     boolValue(st.Enabled),
		"scheduled":   boolValue(st.Scheduled),
		"schedule_id": numberValue(float64(st.ScheduleID)),
		"duration":    numberValue(float64(st.Duration)),
		"running":     boolValue(st.Running),
		"events":      {Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: events}}},
	}
	if !st.LastUpdated.IsZero() {
		fields["last_updated"] = stringValue(st.LastUpdated.UTC().Format(time.RFC3339Nano))
	}
	return &structpb.Struct{Fields: fields}
}

// EncodeStatus encodes a status as a serialized protobuf Struct.
func EncodeStatus(st fes.Status) ([]byte, error) {
	return proto.Marshal(StatusStruct(st))
}

// DecodeStatus decodes a status encoded by EncodeStatus.
func DecodeStatus(data []byte) (fes.Status, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return fes.Status{}, err
	}
	f := s.GetFields()
	st := fes.Status{
		Name:       f["name"].GetStringValue(),
		Enabled:    f["enabled"].GetBoolValue(),
		Scheduled:  f["scheduled"].GetBoolValue(),
		ScheduleID: byte(f["schedule_id"].GetNumberValue()),
		Duration:   uint16(f["duration"].GetNumberValue()),
		Running:    f["running"].GetBoolValue(),
	}
	if ts := f["last_updated"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return st, fmt.Errorf("last_updated: %w", err)
		}
		st.LastUpdated = t
	}
	for _, v := range f["events"].GetListValue().GetValues() {
		ev := v.GetStructValue().GetFields()
		st.Events = append(st.Events, fes.EventStatus{
			Channel:       ev["channel"].GetStringValue(),
			Amplitude:     int(ev["amp"].GetNumberValue()),
			PulseWidth:    int(ev["pw"].GetNumberValue()),
			MaxAmplitude:  int(ev["max_amp"].GetNumberValue()),
			MaxPulseWidth: int(ev["max_pw"].GetNumberValue()),
		})
	}
	return st, nil
}
