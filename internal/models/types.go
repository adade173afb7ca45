package models

type Table string

const TableGuilds Table = "guilds"

type Mappable interface {
	Table() Table
	Map() map[string]any
}
