package upnp

import "encoding/xml"

// Device description XML structs for a MediaRenderer:1 carrying the three
// services this renderer implements.

type DeviceDescription struct {
	XMLName     xml.Name   `xml:"root"`
	Xmlns       string     `xml:"xmlns,attr"`
	SpecVersion SpecVersion `xml:"specVersion"`
	Device      DeviceInfo `xml:"device"`
}

type SpecVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

type DeviceInfo struct {
	DeviceType       string      `xml:"deviceType"`
	FriendlyName     string      `xml:"friendlyName"`
	Manufacturer     string      `xml:"manufacturer"`
	ManufacturerURL  string      `xml:"manufacturerURL"`
	ModelDescription string      `xml:"modelDescription"`
	ModelName        string      `xml:"modelName"`
	ModelNumber      string      `xml:"modelNumber"`
	UDN              string      `xml:"UDN"`
	IconList         IconList    `xml:"iconList"`
	ServiceList      ServiceList `xml:"serviceList"`
}

type IconList struct {
	Icons []Icon `xml:"icon"`
}

type Icon struct {
	Mimetype string `xml:"mimetype"`
	Width    int    `xml:"width"`
	Height   int    `xml:"height"`
	Depth    int    `xml:"depth"`
	URL      string `xml:"url"`
}

type ServiceList struct {
	Services []ServiceDescriptor `xml:"service"`
}

type ServiceDescriptor struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

const deviceType = "urn:schemas-upnp-org:device:MediaRenderer:1"

// BuildDeviceDescription renders the description.xml document a control point
// fetches after discovering this renderer via SSDP.
func BuildDeviceDescription(uuid, friendlyName string) DeviceDescription {
	services := []ServiceDescriptor{
		serviceDescriptor(AVTransport),
		serviceDescriptor(RenderingControl),
		serviceDescriptor(ConnectionManager),
	}
	return DeviceDescription{
		Xmlns:       "urn:schemas-upnp-org:device-1-0",
		SpecVersion: SpecVersion{Major: 1, Minor: 0},
		Device: DeviceInfo{
			DeviceType:       deviceType,
			FriendlyName:     friendlyName,
			Manufacturer:     "renderd",
			ManufacturerURL:  "https://github.com/navidrome/renderd",
			ModelDescription: "renderd UPnP/DLNA media renderer",
			ModelName:        "renderd",
			ModelNumber:      "1.0",
			UDN:              uuid,
			IconList:         IconList{Icons: []Icon{}},
			ServiceList:      ServiceList{Services: services},
		},
	}
}

func serviceDescriptor(name ServiceName) ServiceDescriptor {
	path := "/dlna/" + string(name)
	return ServiceDescriptor{
		ServiceType: name.Type(),
		ServiceID:   name.ID(),
		SCPDURL:     path + "/scpd.xml",
		ControlURL:  path + "/control",
		EventSubURL: path + "/event",
	}
}

// ServiceTypes returns all three service type URNs, used by SSDP to know
// what search targets/NOTIFY types to advertise alongside the root device.
func ServiceTypes() []string {
	return []string{AVTransport.Type(), RenderingControl.Type(), ConnectionManager.Type()}
}
