/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package crptapi

// SampleDocument returns a document with placeholder values that passes validation.
// It may be used as a template for new documents.
func SampleDocument() *Document {
	return &Document{
		Description:    "Sample Description",
		DocID:          "doc_id",
		DocStatus:      "doc_status",
		DocType:        DocTypeLPIntroduceGoods,
		ImportRequest:  true,
		OwnerInn:       "owner_inn",
		ParticipantInn: "participant_inn",
		ProducerInn:    "producer_inn",
		ProductionDate: "2020-01-23",
		ProductionType: "production_type",
		Products: []Product{{
			CertificateDocument:       "cert_doc",
			CertificateDocumentDate:   "2020-01-23",
			CertificateDocumentNumber: "cert_num",
			OwnerInn:                  "owner_inn",
			ProducerInn:               "producer_inn",
			ProductionDate:            "2020-01-23",
			TnvedCode:                 "tnved_code",
			UitCode:                   "uit_code",
			UituCode:                  "uitu_code",
		}},
		RegDate:   "2020-01-23",
		RegNumber: "reg_number",
	}
}
