package main

type CPUConfig struct {
	IPKernel   string `json:"IP_KERNEL"`
	PortKernel int    `json:"PUERTO_KERNEL"`
	LogLevel   string `json:"LOG_LEVEL"`
	Script     string `json:"SCRIPT"`     // Archivo de instrucciones a ejecutar
	RetardoMs  int    `json:"RETARDO_MS"` // Pausa entre instrucciones
}

var config *CPUConfig
