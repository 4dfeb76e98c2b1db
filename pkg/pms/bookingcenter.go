package pms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BookingCenter is the SOAP adapter speaking OTA messages.
type BookingCenter struct {
	Endpoint string
	SiteID   string
	Password string
	client   *http.Client
	log      *zap.Logger
}

func NewBookingCenter(endpoint, siteID, password string, log *zap.Logger) *BookingCenter {
	return &BookingCenter{
		Endpoint: endpoint,
		SiteID:   siteID,
		Password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log.Named("bookingcenter"),
	}
}

// vendorError is an OTA <Error> or SOAP fault returned by the vendor.
type vendorError struct {
	Code    string
	Message string
}

func (e *vendorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bookingcenter: %s (%s)", e.Message, e.Code)
	}
	return "bookingcenter: " + e.Message
}

func (e *vendorError) availability() bool {
	m := strings.ToLower(e.Message)
	return strings.Contains(m, "availab") || strings.Contains(m, "not enough") || strings.Contains(m, "sold out")
}

func (b *BookingCenter) Availability(ctx context.Context, p *Property, checkin, checkout time.Time) ([]RoomAvailability, error) {
	rq := otaHotelAvailRQ{Xmlns: otaNS, Version: "1.0", POS: newPOS(b.SiteID, b.Password)}
	rq.Segment.StayDateRange = otaDateRange{Start: checkin.Format(dateLayout), End: checkout.Format(dateLayout)}
	rq.Segment.Candidate.Quantity = 1
	rq.Segment.Candidate.GuestCount = otaGuestCount{AgeQualifyingCode: "10", Count: 1}
	rq.Segment.HotelRef.HotelCode = p.PropertyID

	root, err := b.call(ctx, "HotelAvail", rq)
	if err != nil {
		return nil, err
	}

	units := make(map[string]int)
	listed := make(map[string]bool)
	for _, tag := range []string{"RoomType", "RoomRate"} {
		for _, n := range root.findAll(tag) {
			code := n.attr("RoomTypeCode")
			if code == "" {
				continue
			}
			listed[code] = true
			u, _ := strconv.Atoi(n.attr("NumberOfUnits"))
			if u > units[code] {
				units[code] = u
			}
		}
	}

	nights := nightsBetween(checkin, checkout)
	rooms := make([]RoomAvailability, 0, len(p.Rooms))
	for i := range p.Rooms {
		room := &p.Rooms[i]
		n := units[room.RoomTypeID]
		rooms = append(rooms, RoomAvailability{
			RoomName:       room.Name,
			Available:      n > 0,
			RoomsAvailable: n,
			RateID:         room.RateID(nights),
			RoomTypeID:     room.RoomTypeID,
			Listed:         listed[room.RoomTypeID],
		})
	}
	return rooms, nil
}

// CreateBooking sends a HotelRes. When the chosen rate plan reports no availability it retries exactly
// once with the room's alternate non-weekly plan. Success requires a vendor reservation id.
func (b *BookingCenter) CreateBooking(ctx context.Context, p *Property, d BookingDetails, g GuestInfo) (*BookingResult, error) {
	room, ok := p.Room(d.RoomName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, d.RoomName)
	}
	nights := d.Nights
	if nights <= 0 {
		nights = nightsBetween(d.Checkin, d.Checkout)
	}
	rateID := room.RateID(nights)

	res, err := b.reserve(ctx, p, room, rateID, d, g)
	var ve *vendorError
	if errors.As(err, &ve) && ve.availability() {
		alt := room.AlternateRateID(rateID)
		if alt == "" {
			return nil, fmt.Errorf("%w: %v", ErrNoAvailability, err)
		}
		b.log.Warn("rate plan unavailable, retrying with alternate",
			zap.String("reservation_code", d.ReservationCode),
			zap.String("rate_id", rateID),
			zap.String("alternate_rate_id", alt))
		res, err = b.reserve(ctx, p, room, alt, d, g)
		if errors.As(err, &ve) && ve.availability() {
			return nil, fmt.Errorf("%w: %v", ErrNoAvailability, err)
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *BookingCenter) reserve(ctx context.Context, p *Property, room *Room, rateID string, d BookingDetails, g GuestInfo) (*BookingResult, error) {
	guests := d.Guests
	if guests < 1 {
		guests = 1
	}
	rq := otaHotelResRQ{Xmlns: otaNS, Version: "1.0", ResStatus: "Commit", POS: newPOS(b.SiteID, b.Password)}
	r := &rq.Reservation
	r.UniqueID.Type = "14"
	r.UniqueID.ID = d.ReservationCode
	r.RoomStay.RoomType.RoomTypeCode = room.RoomTypeID
	r.RoomStay.RoomType.NumberOfUnits = 1
	r.RoomStay.RatePlan.RatePlanCode = rateID
	r.RoomStay.GuestCount = otaGuestCount{AgeQualifyingCode: "10", Count: guests}
	r.RoomStay.TimeSpan = otaDateRange{Start: d.Checkin.Format(dateLayout), End: d.Checkout.Format(dateLayout)}
	if d.TotalAmount > 0 {
		r.RoomStay.Total.AmountAfterTax = strconv.FormatFloat(d.TotalAmount, 'f', 2, 64)
		r.RoomStay.Total.CurrencyCode = "USD"
	}
	r.RoomStay.HotelCode.HotelCode = p.PropertyID
	r.Customer.GivenName = g.FirstName
	r.Customer.Surname = g.LastName
	r.Customer.Telephone.PhoneNumber = g.Phone
	r.Customer.Email = g.Email
	r.Comment = d.Notes

	root, raw, err := b.callRaw(ctx, "HotelRes", rq)
	if err != nil {
		return nil, err
	}
	id := vendorReservationID(root, d.ReservationCode)
	if id == "" {
		return nil, ErrNoReservationID
	}
	b.log.Info("reservation created",
		zap.String("reservation_code", d.ReservationCode),
		zap.String("pms_reservation_id", id),
		zap.String("rate_id", rateID))
	return &BookingResult{Success: true, ReservationID: id, Raw: raw}, nil
}

// vendorReservationID returns the first reservation id in the response that is not our own code.
func vendorReservationID(root *xmlNode, ourCode string) string {
	for _, n := range root.findAll("HotelReservationID") {
		if v := n.attr("ResID_Value"); v != "" && v != ourCode {
			return v
		}
	}
	for _, n := range root.findAll("UniqueID") {
		if v := n.attr("ID"); v != "" && v != ourCode {
			return v
		}
	}
	return ""
}

func (b *BookingCenter) call(ctx context.Context, action string, content interface{}) (*xmlNode, error) {
	root, _, err := b.callRaw(ctx, action, content)
	return root, err
}

func (b *BookingCenter) callRaw(ctx context.Context, action string, content interface{}) (*xmlNode, []byte, error) {
	payload, err := marshalEnvelope(content)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("bookingcenter %s: %w", action, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("bookingcenter %s: read: %w", action, err)
	}

	root, perr := parseXML(body)
	if perr != nil {
		if resp.StatusCode >= 300 {
			return nil, nil, fmt.Errorf("bookingcenter %s: status %d: %s", action, resp.StatusCode, truncate(body, 512))
		}
		return nil, nil, fmt.Errorf("bookingcenter %s: parse: %w", action, perr)
	}
	if fault := root.first("Fault"); fault != nil {
		msg := "soap fault"
		if fs := fault.first("faultstring"); fs != nil && fs.text() != "" {
			msg = fs.text()
		}
		return nil, nil, &vendorError{Message: msg}
	}
	if e := root.first("Error"); e != nil {
		msg := e.text()
		if msg == "" {
			msg = e.attr("ShortText")
		}
		return nil, nil, &vendorError{Code: e.attr("Code"), Message: msg}
	}
	if resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("bookingcenter %s: status %d", action, resp.StatusCode)
	}
	return root, body, nil
}
