package models

import (
	"log"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Entity{},
		&TradeOrder{}, &OrderCostLine{},
		&Obligation{},
		&Payment{},
		&ReconcileEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
