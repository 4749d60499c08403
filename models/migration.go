package models

import (
	"log"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Branch{}, &Customer{},
		&CreditInvoice{},
		&PaymentInstrumentType{}, &PaymentInstrument{},
		&Payment{}, &PaymentDetail{},
		&MasterClaim{}, &Claim{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
