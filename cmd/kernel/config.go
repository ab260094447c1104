package main

import "os"

// KernelConfig define la configuración del módulo Kernel
type KernelConfig struct {
	IPKernel       string `json:"IP_KERNEL"`
	PuertoMonitor  int    `json:"PUERTO_MONITOR"`
	LogLevel       string `json:"LOG_LEVEL"`
	Algoritmo      string `json:"ALGORITMO_PLANIFICACION"`
	CPUs           int    `json:"CPUS"`
	Quantum        int    `json:"QUANTUM"`
	MarcosLibres   int    `json:"MARCOS_LIBRES"`
	TamPagina      int    `json:"TAM_PAGINA"`
	EntradasTLB    int    `json:"ENTRADAS_TLB"`
	DirectorioSwap string `json:"DIRECTORIO_SWAP"`
	RetardoSwap    int    `json:"RETARDO_SWAP"`
	RetardoTick    int    `json:"RETARDO_TICK"`
}

// aplicarDefaults completa los valores ausentes o inválidos
func (cfg *KernelConfig) aplicarDefaults() {
	if cfg.IPKernel == "" {
		cfg.IPKernel = "127.0.0.1"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Algoritmo == "" {
		cfg.Algoritmo = "DEFAULT"
	}
	if cfg.CPUs <= 0 {
		cfg.CPUs = 1
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = 2
	}
	if cfg.MarcosLibres <= 0 {
		cfg.MarcosLibres = 64
	}
	if cfg.TamPagina <= 0 {
		cfg.TamPagina = 4096
	}
	if cfg.DirectorioSwap == "" {
		cfg.DirectorioSwap = os.TempDir()
	}
	if cfg.RetardoTick <= 0 {
		cfg.RetardoTick = 1
	}
}
