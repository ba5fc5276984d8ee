package khqr

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// EMVCo QR tags used by KHQR.
const (
	tagPayloadFormat      = "00"
	tagPointOfInitiation  = "01"
	tagMerchantAccount    = "29"
	tagMerchantCategory   = "52"
	tagTransactionCcy     = "53"
	tagTransactionAmount  = "54"
	tagCountryCode        = "58"
	tagMerchantName       = "59"
	tagMerchantCity       = "60"
	tagAdditionalData     = "62"
	tagCRC                = "63"
	subTagBakongAccount   = "00"
	subTagBillNumber      = "01"
	subTagStoreLabel      = "03"
	subTagTerminalLabel   = "07"
	currencyUSD           = "840"
	countryKH             = "KH"
	categoryRetail        = "5999"
	pointOfInitiationOnce = "12" // dynamic QR, single use
)

// MerchantOptions are the static identity fields baked into every QR.
type MerchantOptions struct {
	City          string
	StoreLabel    string
	TerminalLabel string
}

func DefaultMerchantOptions() MerchantOptions {
	return MerchantOptions{
		City:          "Phnom Penh",
		StoreLabel:    "TelegramStore",
		TerminalLabel: "TeleBot",
	}
}

func tlv(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

// BuildPayload assembles the KHQR EMV payload for a dynamic USD payment.
// Field layout follows the Bakong KHQR specification; the CRC-16 of the
// whole payload is appended as tag 63.
func BuildPayload(req CreateRequest, opt MerchantOptions) string {
	var b strings.Builder
	b.WriteString(tlv(tagPayloadFormat, "01"))
	b.WriteString(tlv(tagPointOfInitiation, pointOfInitiationOnce))
	b.WriteString(tlv(tagMerchantAccount, tlv(subTagBakongAccount, req.BankAccount)))
	b.WriteString(tlv(tagMerchantCategory, categoryRetail))
	b.WriteString(tlv(tagTransactionCcy, currencyUSD))
	b.WriteString(tlv(tagTransactionAmount, req.Amount.StringFixed(2)))
	b.WriteString(tlv(tagCountryCode, countryKH))
	b.WriteString(tlv(tagMerchantName, req.MerchantName))
	b.WriteString(tlv(tagMerchantCity, opt.City))

	additional := tlv(subTagBillNumber, req.BillNumber) +
		tlv(subTagStoreLabel, opt.StoreLabel) +
		tlv(subTagTerminalLabel, opt.TerminalLabel)
	b.WriteString(tlv(tagAdditionalData, additional))

	payload := b.String() + tagCRC + "04"
	return payload + crc16Hex(payload)
}

// MD5Ref derives the tracking reference Bakong resolves a payment by.
func MD5Ref(payload string) string {
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// crc16Hex computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) over the
// payload, uppercase hex, as EMVCo requires.
func crc16Hex(s string) string {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}
