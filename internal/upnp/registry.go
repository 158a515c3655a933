package upnp

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// varSpec is the declared shape of one state variable, parsed out of the
// service's SCPD document so validation always agrees with what control
// points were told.
type varSpec struct {
	Name          string
	DataType      string
	SendEvents    bool
	AllowedValues []string
	Min, Max      *int
}

// argSpec is one declared action argument and the state variable it reads
// from or writes to.
type argSpec struct {
	Name                 string
	RelatedStateVariable string
}

// actionSpec is one declared action: its ordered input and output argument
// lists. Actions with no bespoke Go handler are served straight from this,
// echoing each output argument's related state variable.
type actionSpec struct {
	Name string
	In   []argSpec
	Out  []argSpec
}

// serviceSpec is everything the registry learned from one SCPD document.
type serviceSpec struct {
	vars    map[string]varSpec
	actions map[string]actionSpec
}

type scpdDoc struct {
	XMLName        xml.Name     `xml:"scpd"`
	Actions        []scpdAction `xml:"actionList>action"`
	StateVariables []scpdVar    `xml:"serviceStateTable>stateVariable"`
}

type scpdAction struct {
	Name      string    `xml:"name"`
	Arguments []scpdArg `xml:"argumentList>argument"`
}

type scpdArg struct {
	Name                 string `xml:"name"`
	Direction            string `xml:"direction"`
	RelatedStateVariable string `xml:"relatedStateVariable"`
}

type scpdVar struct {
	SendEvents    string   `xml:"sendEvents,attr"`
	Name          string   `xml:"name"`
	DataType      string   `xml:"dataType"`
	AllowedValues []string `xml:"allowedValueList>allowedValue"`
	Range         *struct {
		Minimum int `xml:"minimum"`
		Maximum int `xml:"maximum"`
	} `xml:"allowedValueRange"`
}

// parseSCPD extracts the action and state-variable declarations from one
// SCPD document. The documents are compiled in, so a parse failure is a
// programming error and panics at init rather than limping along with an
// empty registry.
func parseSCPD(raw string) serviceSpec {
	var doc scpdDoc
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("invalid built-in SCPD document: %v", err))
	}

	vars := make(map[string]varSpec, len(doc.StateVariables))
	for _, v := range doc.StateVariables {
		spec := varSpec{
			Name:          v.Name,
			DataType:      v.DataType,
			SendEvents:    v.SendEvents == "yes",
			AllowedValues: v.AllowedValues,
		}
		if v.Range != nil {
			lo, hi := v.Range.Minimum, v.Range.Maximum
			spec.Min, spec.Max = &lo, &hi
		}
		vars[v.Name] = spec
	}

	actions := make(map[string]actionSpec, len(doc.Actions))
	for _, a := range doc.Actions {
		spec := actionSpec{Name: a.Name}
		for _, arg := range a.Arguments {
			as := argSpec{Name: arg.Name, RelatedStateVariable: arg.RelatedStateVariable}
			if arg.Direction == "out" {
				spec.Out = append(spec.Out, as)
			} else {
				spec.In = append(spec.In, as)
			}
		}
		actions[a.Name] = spec
	}

	return serviceSpec{vars: vars, actions: actions}
}

var serviceSpecs = map[ServiceName]serviceSpec{
	AVTransport:       parseSCPD(avTransportSCPD),
	RenderingControl:  parseSCPD(renderingControlSCPD),
	ConnectionManager: parseSCPD(connectionManagerSCPD),
}

// validateRange checks a numeric input against the state variable's
// declared allowedValueRange. Variables without a declared range accept
// anything.
func validateRange(service ServiceName, name string, value int) error {
	spec, ok := serviceSpecs[service].vars[name]
	if !ok {
		return nil
	}
	if spec.Min != nil && value < *spec.Min {
		return NewFault(ErrArgumentValueOOR,
			fmt.Sprintf("%s %d below minimum %d", name, value, *spec.Min))
	}
	if spec.Max != nil && value > *spec.Max {
		return NewFault(ErrArgumentValueOOR,
			fmt.Sprintf("%s %d above maximum %d", name, value, *spec.Max))
	}
	return nil
}

// validateAllowed checks a string input against the state variable's
// declared allowedValueList, when one exists.
func validateAllowed(service ServiceName, name, value string) error {
	spec, ok := serviceSpecs[service].vars[name]
	if !ok || len(spec.AllowedValues) == 0 {
		return nil
	}
	for _, allowed := range spec.AllowedValues {
		if allowed == value {
			return nil
		}
	}
	return NewFault(ErrArgumentValueInval,
		fmt.Sprintf("%s %q is not an allowed value", name, value))
}

// validateInput applies whatever constraints the state variable declares to
// a raw string input: the allowed-value list, and the numeric range when
// the value parses as a number.
func validateInput(service ServiceName, name, value string) error {
	if err := validateAllowed(service, name, value); err != nil {
		return err
	}
	spec, ok := serviceSpecs[service].vars[name]
	if !ok || (spec.Min == nil && spec.Max == nil) {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return NewFault(ErrArgumentValueInval,
			fmt.Sprintf("%s %q is not numeric", name, value))
	}
	return validateRange(service, name, n)
}
