package pms

import (
	"encoding/xml"
	"strings"
)

const (
	soapNS = "http://schemas.xmlsoap.org/soap/envelope/"
	otaNS  = "http://www.opentravel.org/OTA/2003/05"
)

type soapEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	SoapNS  string   `xml:"xmlns:soap,attr"`
	Body    soapBody `xml:"soap:Body"`
}

type soapBody struct {
	Content interface{}
}

func marshalEnvelope(content interface{}) ([]byte, error) {
	env := soapEnvelope{SoapNS: soapNS, Body: soapBody{Content: content}}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

type otaPOS struct {
	Source struct {
		RequestorID struct {
			ID              string `xml:"ID,attr"`
			MessagePassword string `xml:"MessagePassword,attr"`
		} `xml:"RequestorID"`
	} `xml:"Source"`
}

func newPOS(siteID, password string) otaPOS {
	var pos otaPOS
	pos.Source.RequestorID.ID = siteID
	pos.Source.RequestorID.MessagePassword = password
	return pos
}

type otaDateRange struct {
	Start string `xml:"Start,attr"`
	End   string `xml:"End,attr"`
}

type otaGuestCount struct {
	AgeQualifyingCode string `xml:"AgeQualifyingCode,attr"`
	Count             int    `xml:"Count,attr"`
}

type otaHotelAvailRQ struct {
	XMLName   xml.Name `xml:"OTA_HotelAvailRQ"`
	Xmlns     string   `xml:"xmlns,attr"`
	Version   string   `xml:"Version,attr"`
	EchoToken string   `xml:"EchoToken,attr,omitempty"`
	POS       otaPOS   `xml:"POS"`
	Segment   struct {
		StayDateRange otaDateRange `xml:"StayDateRange"`
		Candidate     struct {
			Quantity   int           `xml:"Quantity,attr"`
			GuestCount otaGuestCount `xml:"GuestCounts>GuestCount"`
		} `xml:"RoomStayCandidates>RoomStayCandidate"`
		HotelRef struct {
			HotelCode string `xml:"HotelCode,attr"`
		} `xml:"HotelSearchCriteria>Criterion>HotelRef"`
	} `xml:"AvailRequestSegments>AvailRequestSegment"`
}

type otaRoomStay struct {
	RoomType struct {
		RoomTypeCode  string `xml:"RoomTypeCode,attr"`
		NumberOfUnits int    `xml:"NumberOfUnits,attr"`
	} `xml:"RoomTypes>RoomType"`
	RatePlan struct {
		RatePlanCode string `xml:"RatePlanCode,attr"`
	} `xml:"RatePlans>RatePlan"`
	GuestCount otaGuestCount `xml:"GuestCounts>GuestCount"`
	TimeSpan   otaDateRange  `xml:"TimeSpan"`
	Total      struct {
		AmountAfterTax string `xml:"AmountAfterTax,attr,omitempty"`
		CurrencyCode   string `xml:"CurrencyCode,attr,omitempty"`
	} `xml:"Total"`
	HotelCode struct {
		HotelCode string `xml:"HotelCode,attr"`
	} `xml:"BasicPropertyInfo"`
}

type otaCustomer struct {
	GivenName string `xml:"PersonName>GivenName"`
	Surname   string `xml:"PersonName>Surname"`
	Telephone struct {
		PhoneNumber string `xml:"PhoneNumber,attr"`
	} `xml:"Telephone"`
	Email string `xml:"Email"`
}

type otaHotelResRQ struct {
	XMLName     xml.Name `xml:"OTA_HotelResRQ"`
	Xmlns       string   `xml:"xmlns,attr"`
	Version     string   `xml:"Version,attr"`
	ResStatus   string   `xml:"ResStatus,attr"`
	POS         otaPOS   `xml:"POS"`
	Reservation struct {
		UniqueID struct {
			Type string `xml:"Type,attr"`
			ID   string `xml:"ID,attr"`
		} `xml:"UniqueID"`
		RoomStay otaRoomStay `xml:"RoomStays>RoomStay"`
		Customer otaCustomer `xml:"ResGuests>ResGuest>Profiles>ProfileInfo>Profile>Customer"`
		Comment  string      `xml:"ResGlobalInfo>Comments>Comment>Text,omitempty"`
	} `xml:"HotelReservations>HotelReservation"`
}

// xmlNode is a generic element tree used to read vendor responses whose shape varies by operation.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

func parseXML(b []byte) (*xmlNode, error) {
	var root xmlNode
	if err := xml.Unmarshal(b, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) walk(fn func(*xmlNode)) {
	fn(n)
	for i := range n.Nodes {
		n.Nodes[i].walk(fn)
	}
}

// findAll returns every descendant (or n itself) whose local name matches.
func (n *xmlNode) findAll(local string) []*xmlNode {
	var out []*xmlNode
	n.walk(func(c *xmlNode) {
		if c.XMLName.Local == local {
			out = append(out, c)
		}
	})
	return out
}

func (n *xmlNode) first(local string) *xmlNode {
	if all := n.findAll(local); len(all) > 0 {
		return all[0]
	}
	return nil
}

func (n *xmlNode) text() string {
	return strings.TrimSpace(n.Text)
}
