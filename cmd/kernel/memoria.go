package main

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// PTE es una entrada de tabla de páginas. El número de marco vive en los
// bits altos; el bit 7 (swapeada) marca una página presente solo en su
// archivo de swap, identificado por (pid, vpn) y no por la PTE.
type PTE uint32

const (
	ptePresente   PTE = 1 << 0
	pteEscritura  PTE = 1 << 1
	pteUsuario    PTE = 1 << 2
	pteAccedida   PTE = 1 << 5
	pteModificada PTE = 1 << 6
	pteSwapeada   PTE = 1 << 7

	desplazamientoMarco = 12
)

func (pte PTE) marco() int {
	return int(pte >> desplazamientoMarco)
}

func ptePara(marco int, flags PTE) PTE {
	return PTE(marco)<<desplazamientoMarco | flags
}

// MemoriaFisica administra la memoria principal y sus marcos libres
type MemoriaFisica struct {
	mu        sync.Mutex
	principal []byte
	tamPagina int
	libres    []bool
	duenios   []int
	cantLibre int
}

func nuevaMemoriaFisica(marcos int, tamPagina int) *MemoriaFisica {
	m := &MemoriaFisica{
		principal: make([]byte, marcos*tamPagina),
		tamPagina: tamPagina,
		libres:    make([]bool, marcos),
		duenios:   make([]int, marcos),
		cantLibre: marcos,
	}
	for i := range m.libres {
		m.libres[i] = true
	}
	utils.InfoLog.Info("Memoria principal inicializada",
		"marcos", marcos,
		"tam_pagina", tamPagina,
		"total", humanize.Bytes(uint64(marcos*tamPagina)))
	return m
}

// asignarMarco busca un marco libre y lo marca ocupado para pid
func (m *MemoriaFisica) asignarMarco(pid int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, libre := range m.libres {
		if libre {
			m.libres[i] = false
			m.duenios[i] = pid
			m.cantLibre--
			return i, nil
		}
	}
	return -1, fmt.Errorf("no hay marcos libres disponibles")
}

// liberarMarco devuelve el marco al conjunto libre y lo limpia
func (m *MemoriaFisica) liberarMarco(marco int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if marco < 0 || marco >= len(m.libres) || m.libres[marco] {
		panic("liberarMarco")
	}
	inicio := marco * m.tamPagina
	for i := inicio; i < inicio+m.tamPagina; i++ {
		m.principal[i] = 0
	}
	m.libres[marco] = true
	m.duenios[marco] = 0
	m.cantLibre++
}

func (m *MemoriaFisica) MarcosLibres() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cantLibre
}

// pagina devuelve la vista de bytes del marco
func (m *MemoriaFisica) pagina(marco int) []byte {
	inicio := marco * m.tamPagina
	return m.principal[inicio : inicio+m.tamPagina]
}

// Espacio es el espacio de direcciones de un proceso: su tabla de páginas
// indexada por número de página virtual más la TLB que la acelera.
type Espacio struct {
	tabla []PTE
	tlb   *TLB
}

func nuevoEspacio(entradasTLB int) *Espacio {
	return &Espacio{tlb: nuevaTLB(entradasTLB)}
}

// pte devuelve un puntero a la entrada del vpn, extendiendo la tabla si es
// necesario (el equivalente a recorrer los niveles del directorio)
func (e *Espacio) pte(vpn int) *PTE {
	for len(e.tabla) <= vpn {
		e.tabla = append(e.tabla, 0)
	}
	return &e.tabla[vpn]
}

// asignarEspacioUsuario crece el espacio de p desde tamViejo hasta tamNuevo
// en bytes, asignando un marco por página nueva. Si no hay marcos libres
// encola un pedido al demonio de swap-out y reintenta.
func (k *Kernel) asignarEspacioUsuario(p *Proc, tamViejo, tamNuevo int) (int, error) {
	if tamNuevo < tamViejo {
		return tamViejo, nil
	}
	pg := k.config.TamPagina
	for va := redondearArriba(tamViejo, pg); va < tamNuevo; va += pg {
		marco, err := k.asignarMarcoUsuario(p)
		if err != nil {
			k.liberarEspacioUsuario(p, va, tamViejo)
			return 0, err
		}
		*p.espacio.pte(va/pg) = ptePara(marco, ptePresente|pteEscritura|pteUsuario)
	}
	return tamNuevo, nil
}

// liberarEspacioUsuario achica el espacio desde tamViejo hasta tamNuevo,
// devolviendo marcos y borrando archivos de swap de páginas expulsadas
func (k *Kernel) liberarEspacioUsuario(p *Proc, tamViejo, tamNuevo int) int {
	if tamNuevo >= tamViejo {
		return tamViejo
	}
	pg := k.config.TamPagina
	for va := redondearArriba(tamNuevo, pg); va < tamViejo; va += pg {
		vpn := va / pg
		if vpn >= len(p.espacio.tabla) {
			continue
		}
		pte := p.espacio.pte(vpn)
		switch {
		case *pte&ptePresente != 0:
			k.memoria.liberarMarco(pte.marco())
		case *pte&pteSwapeada != 0:
			if k.fs.Existe(nombreArchivoSwap(p.pid, vpn)) {
				k.eliminarPagina(p.pid, vpn)
				k.limiteArchivos.Add(-1)
			}
		}
		*pte = 0
		p.espacio.tlb.Invalidar(vpn)
	}
	return tamNuevo
}

// copiarEspacio duplica el espacio del padre página por página en el hijo.
// Las páginas expulsadas del padre se leen de su archivo de swap sin
// borrarlo: el padre las sigue teniendo en disco, el hijo las recibe
// residentes.
func (k *Kernel) copiarEspacio(padre, hijo *Proc) error {
	pg := k.config.TamPagina
	for vpn := 0; vpn*pg < padre.tam; vpn++ {
		pte := padre.espacio.pte(vpn)
		if *pte&(ptePresente|pteSwapeada) == 0 {
			continue
		}
		marco, err := k.asignarMarcoUsuario(hijo)
		if err != nil {
			k.liberarEspacio(hijo, (vpn)*pg)
			return err
		}
		destino := k.memoria.pagina(marco)
		if *pte&ptePresente != 0 {
			copy(destino, k.memoria.pagina(pte.marco()))
		} else {
			datos, err := k.leerPaginaSinEliminar(padre.pid, vpn)
			if err != nil {
				k.memoria.liberarMarco(marco)
				k.liberarEspacio(hijo, (vpn)*pg)
				return err
			}
			copy(destino, datos)
		}
		*hijo.espacio.pte(vpn) = ptePara(marco, ptePresente|pteEscritura|pteUsuario)
	}
	return nil
}

// liberarEspacio devuelve todos los recursos del espacio de p hasta tam
func (k *Kernel) liberarEspacio(p *Proc, tam int) {
	if p.espacio == nil {
		return
	}
	k.liberarEspacioUsuario(p, tam, 0)
	p.espacio.tlb.Purgar()
	p.espacio.tabla = nil
}

// asignarMarcoUsuario consigue un marco para p; ante memoria agotada pide
// una expulsión al demonio de swap-out y vuelve a intentar
func (k *Kernel) asignarMarcoUsuario(p *Proc) (int, error) {
	for intento := 0; ; intento++ {
		marco, err := k.memoria.asignarMarco(p.pid)
		if err == nil {
			return marco, nil
		}
		if !k.swapListo.Load() || intento >= maxReintentosMarco {
			return -1, err
		}
		p.solicitarSwapOut()
	}
}

// traducir resuelve va a dirección física, marcando los bits de accedida y
// modificada. Un fallo sobre una página expulsada encola el pedido de
// swap-in y bloquea hasta que el demonio la reponga.
func (k *Kernel) traducir(p *Proc, va int, escritura bool) (int, error) {
	if va < 0 || va >= p.tam {
		return 0, fmt.Errorf("dirección %d fuera del espacio del proceso %d", va, p.pid)
	}
	pg := k.config.TamPagina
	vpn := va / pg
	desplazamiento := va % pg

	for {
		if marco, ok := p.espacio.tlb.Buscar(vpn); ok {
			if escritura {
				*p.espacio.pte(vpn) |= pteModificada
			}
			return marco*pg + desplazamiento, nil
		}

		pte := p.espacio.pte(vpn)
		if *pte&ptePresente == 0 {
			if *pte&pteSwapeada == 0 {
				return 0, fmt.Errorf("fallo de página inválido en %d (pid %d)", va, p.pid)
			}
			p.trapva = va
			p.solicitarSwapIn()
			continue
		}

		*pte |= pteAccedida
		if escritura {
			*pte |= pteModificada
		}
		marco := pte.marco()
		p.espacio.tlb.Actualizar(vpn, marco)
		return marco*pg + desplazamiento, nil
	}
}

// EscribirMemoria escribe datos en el espacio del proceso a partir de va
func (p *Proc) EscribirMemoria(va int, datos []byte) error {
	k := p.k
	pg := k.config.TamPagina
	for len(datos) > 0 {
		fisica, err := k.traducir(p, va, true)
		if err != nil {
			return err
		}
		n := pg - fisica%pg
		if n > len(datos) {
			n = len(datos)
		}
		copy(k.memoria.principal[fisica:fisica+n], datos[:n])
		va += n
		datos = datos[n:]
	}
	return nil
}

// LeerMemoria lee n bytes del espacio del proceso a partir de va
func (p *Proc) LeerMemoria(va int, n int) ([]byte, error) {
	k := p.k
	pg := k.config.TamPagina
	resultado := make([]byte, 0, n)
	for n > 0 {
		fisica, err := k.traducir(p, va, false)
		if err != nil {
			return nil, err
		}
		tramo := pg - fisica%pg
		if tramo > n {
			tramo = n
		}
		resultado = append(resultado, k.memoria.principal[fisica:fisica+tramo]...)
		va += tramo
		n -= tramo
	}
	return resultado, nil
}

func redondearArriba(n, multiplo int) int {
	return (n + multiplo - 1) / multiplo * multiplo
}
